package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFixture is the top-level YAML structure for static directory fixtures.
type yamlFixture struct {
	Users []yamlUser `yaml:"users"`
	Games []yamlGame `yaml:"games"`
}

// yamlUser is the YAML representation of an account.
type yamlUser struct {
	Token    string `yaml:"token"`
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
}

// yamlGame is the YAML representation of a game record.
type yamlGame struct {
	Token   string   `yaml:"token"`
	Host    string   `yaml:"host"`
	Players []string `yaml:"players"`
}

// Static is an in-memory Directory loaded from a YAML fixture. It stands in
// for the real account/game service in development and tests.
type Static struct {
	accounts map[string]Account // keyed by user token
	games    map[string]yamlGame
}

// LoadStatic reads a fixture file into a Static directory.
//
// Precondition: path must point to a valid YAML fixture.
// Postcondition: Returns a validated Static or a non-nil error.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	return LoadStaticFromBytes(data)
}

// LoadStaticFromBytes parses and validates a fixture from YAML bytes.
func LoadStaticFromBytes(data []byte) (*Static, error) {
	var fixture yamlFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	s := &Static{
		accounts: make(map[string]Account, len(fixture.Users)),
		games:    make(map[string]yamlGame, len(fixture.Games)),
	}
	usernames := make(map[string]bool, len(fixture.Users))
	for _, u := range fixture.Users {
		if u.Token == "" || u.Username == "" {
			return nil, fmt.Errorf("user entry must have token and username, got %+v", u)
		}
		if _, dup := s.accounts[u.Token]; dup {
			return nil, fmt.Errorf("duplicate user token %q", u.Token)
		}
		s.accounts[u.Token] = Account{ID: u.ID, Username: u.Username}
		usernames[u.Username] = true
	}
	for _, g := range fixture.Games {
		if g.Token == "" {
			return nil, fmt.Errorf("game entry must have a token, got %+v", g)
		}
		if !usernames[g.Host] {
			return nil, fmt.Errorf("game %q host %q is not a known user", g.Token, g.Host)
		}
		for _, p := range g.Players {
			if !usernames[p] {
				return nil, fmt.Errorf("game %q player %q is not a known user", g.Token, p)
			}
		}
		if _, dup := s.games[g.Token]; dup {
			return nil, fmt.Errorf("duplicate game token %q", g.Token)
		}
		s.games[g.Token] = g
	}
	return s, nil
}

// GetAccount implements Directory.
func (s *Static) GetAccount(_ context.Context, userToken string) (Account, error) {
	account, ok := s.accounts[userToken]
	if !ok {
		return Account{}, ErrUnknownUser
	}
	return account, nil
}

// CheckGamePermission implements Directory.
func (s *Static) CheckGamePermission(ctx context.Context, userToken, gameToken string) (Role, error) {
	game, ok := s.games[gameToken]
	if !ok {
		return RoleNone, ErrUnknownGame
	}
	account, err := s.GetAccount(ctx, userToken)
	if err != nil {
		return RoleNone, err
	}
	if game.Host == account.Username {
		return RoleHost, nil
	}
	for _, p := range game.Players {
		if p == account.Username {
			return RolePlayer, nil
		}
	}
	return RoleNone, nil
}
