package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wsmesh-go/internal/cli/output"
	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/storage"
)

// GroupCommand manages stored groups.
func GroupCommand() *cli.Command {
	return &cli.Command{
		Name:  "group",
		Usage: "Manage groups",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create or replace a group",
				ArgsUsage: "[flags] <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.BoolFlag{Name: "operator", Usage: "Members act as operators"},
					&cli.StringFlag{Name: "tags", Usage: "Free-form tags passed to clients"},
				},
				Action: groupAdd,
			},
			{
				Name:   "list",
				Usage:  "List groups",
				Flags:  []cli.Flag{outputFlag()},
				Action: groupList,
			},
		},
	}
}

func groupAdd(c *cli.Context) error {
	id, err := idArg(c, "group")
	if err != nil {
		return err
	}
	if id == service.NodeGroupID {
		return fmt.Errorf("group %q is reserved for peer nodes", id)
	}
	g := &domain.Group{
		ID:       id,
		Name:     c.String("name"),
		Operator: c.Bool("operator"),
		Tags:     c.String("tags"),
	}
	return withStore(c, func(s *storage.Store) error {
		if err := s.PutGroup(c.Context, g); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "group %s saved\n", id)
		return nil
	})
}

type groupRows []*domain.Group

func (l groupRows) Table() *output.Table {
	t := output.NewTable("ID", "NAME", "OPERATOR", "TAGS")
	for _, g := range l {
		t.AddRow(g.ID, g.Name, fmt.Sprint(g.Operator), g.Tags)
	}
	return t
}

func groupList(c *cli.Context) error {
	return withStore(c, func(s *storage.Store) error {
		groups, err := s.ListGroups(c.Context)
		if err != nil {
			return err
		}
		return printResult(c, groupRows(groups))
	})
}
