package command

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wsmesh-go/internal/cli/output"
	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/storage"
)

// UserCommand manages stored users.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create or replace a user and print its key",
				ArgsUsage: "[flags] <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "group", Usage: "Default group"},
					&cli.StringSliceFlag{Name: "role", Usage: "Additional group the user may assume"},
					&cli.BoolFlag{Name: "admin", Usage: "Grant administrator rights"},
					&cli.StringFlag{Name: "key", Usage: "Hex key to use instead of a generated one"},
				},
				Action: userAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a user",
				ArgsUsage: "<id>",
				Action:    userRemove,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  []cli.Flag{outputFlag()},
				Action: userList,
			},
		},
	}
}

func userAdd(c *cli.Context) error {
	id, err := idArg(c, "user")
	if err != nil {
		return err
	}
	if strings.HasPrefix(id, service.NodeUserPrefix) {
		return fmt.Errorf("ids starting with %q are reserved for peer nodes", service.NodeUserPrefix)
	}
	key := c.String("key")
	if key == "" {
		if key, err = service.GenerateKey(); err != nil {
			return err
		}
	} else if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("--key must be hex encoded: %w", err)
	}
	u := &domain.User{
		ID:      id,
		Name:    c.String("name"),
		GroupID: c.String("group"),
		Roles:   c.StringSlice("role"),
		Admin:   c.Bool("admin"),
		Key:     key,
	}
	return withStore(c, func(s *storage.Store) error {
		if err := s.PutUser(c.Context, u); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "user %s saved\nkey: %s\n", id, key)
		return nil
	})
}

func userRemove(c *cli.Context) error {
	id, err := idArg(c, "user")
	if err != nil {
		return err
	}
	return withStore(c, func(s *storage.Store) error {
		if err := s.DeleteUser(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "user %s removed\n", id)
		return nil
	})
}

// userRow hides the key from listings.
type userRow struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	GroupID  string   `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Admin    bool     `json:"admin" yaml:"admin"`
	Disabled bool     `json:"disabled" yaml:"disabled"`
}

type userRows []userRow

func (l userRows) Table() *output.Table {
	t := output.NewTable("ID", "NAME", "GROUP", "ROLES", "ADMIN", "DISABLED")
	for _, u := range l {
		t.AddRow(u.ID, u.Name, u.GroupID, strings.Join(u.Roles, ","),
			fmt.Sprint(u.Admin), fmt.Sprint(u.Disabled))
	}
	return t
}

func userList(c *cli.Context) error {
	return withStore(c, func(s *storage.Store) error {
		users, err := s.ListUsers(c.Context)
		if err != nil {
			return err
		}
		rows := make(userRows, 0, len(users))
		for _, u := range users {
			rows = append(rows, userRow{
				ID: u.ID, Name: u.Name, GroupID: u.GroupID,
				Roles: u.Roles, Admin: u.Admin, Disabled: u.Disabled,
			})
		}
		return printResult(c, rows)
	})
}
