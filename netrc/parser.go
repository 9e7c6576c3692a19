package netrc

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/log"
)

type BasicAuth struct {
	User     string
	Password string
}

// Netrc holds the credentials found in a netrc file, keyed by machine name.
type Netrc struct {
	machines map[string]BasicAuth
	fallback *BasicAuth
}

// DefaultPath returns the location of the user's netrc file.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", eris.Wrap(err, "unable to locate home directory")
	}
	return filepath.Join(home, ".netrc"), nil
}

// Load parses the netrc file at `netrcPath`. A missing file yields an empty Netrc.
func Load(netrcPath string) (*Netrc, error) {
	file, err := os.Open(netrcPath)
	if os.IsNotExist(err) {
		log.Debug("No netrc file at '%s'.\n", netrcPath)
		return Parse(strings.NewReader(""))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "error reading '%s'", netrcPath)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads netrc entries from `r`. Both the one-entry-per-line and the
// one-token-pair-per-line layouts are accepted. Macro definitions are skipped.
func Parse(r io.Reader) (*Netrc, error) {
	n := &Netrc{machines: make(map[string]BasicAuth)}

	currentMachine := ""
	inDefault := false
	inMacro := false

	update := func(f func(a *BasicAuth)) {
		if inDefault {
			if n.fallback == nil {
				n.fallback = &BasicAuth{}
			}
			f(n.fallback)
			return
		}
		if currentMachine == "" {
			return
		}
		auth := n.machines[currentMachine]
		f(&auth)
		n.machines[currentMachine] = auth
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if inMacro {
			// A macro body ends at the first empty line.
			if len(tokens) == 0 {
				inMacro = false
			}
			continue
		}

		for i := 0; i < len(tokens); i++ {
			next := func() string {
				if i+1 < len(tokens) {
					i++
					return tokens[i]
				}
				return ""
			}

			switch tokens[i] {
			case "machine":
				currentMachine = next()
				inDefault = false
			case "default":
				currentMachine = ""
				inDefault = true
			case "login":
				login := next()
				update(func(a *BasicAuth) { a.User = login })
			case "password":
				password := next()
				update(func(a *BasicAuth) { a.Password = password })
			case "account":
				next()
			case "macdef":
				next()
				inMacro = true
				i = len(tokens)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read netrc")
	}
	return n, nil
}

// GetAuthForUrl returns the credentials for the host of `urlString`, or nil.
func (n *Netrc) GetAuthForUrl(urlString string) *BasicAuth {
	u, err := url.Parse(urlString)
	if err != nil {
		log.Warning("Invalid URL %q.\n", urlString)
		return nil
	}

	if auth, ok := n.machines[u.Hostname()]; ok {
		return &auth
	}
	if n.fallback != nil {
		auth := *n.fallback
		return &auth
	}
	return nil
}
