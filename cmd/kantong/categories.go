package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage transaction categories",
		Long:  `List, add, and delete the categories used to organize transactions.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			cats, err := app.store.GetCategoriesByUser(ctx, app.userID)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(cats) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No categories found. Use 'kantong categories add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\n", "ID", "Name")
			fmt.Fprintf(w, "%s\t%s\n", strings.Repeat("-", 36), strings.Repeat("-", 20))
			for _, cat := range cats {
				fmt.Fprintf(w, "%s\t%s\n", cat.ID, cat.Name)
			}

			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			cat, err := app.writer.CreateCategory(ctx, app.userID, args[0])
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Added category %q (%s)", cat.Name, cat.ID)))
			return nil
		},
	}
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.writer.DeleteCategory(ctx, args[0]); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render("Category deleted"))
			return nil
		},
	}
}
