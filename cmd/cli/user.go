package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cristidraghici/open-file-sharing/internal/creds"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users in the CSV credential store",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username] [password] [role]",
	Short: "Add a new user to the system",
	Args:  cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, password, role, err := collectUserArgs(args)
		if err != nil {
			return err
		}

		store := creds.NewStore(usersPath())
		user, err := store.AddUser(username, password, role)
		if err != nil {
			return err
		}

		fmt.Printf("User %q has been successfully created with role %q\n", user.Username, user.Role)
		fmt.Printf("User data stored in: %s\n", store.Path())
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users in the system",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := creds.NewStore(usersPath())
		users, err := store.ListUsers()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tROLE")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\n", u.Username, u.Role)
		}
		w.Flush()
		fmt.Printf("User data source: %s\n", store.Path())
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Delete a user from the system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := creds.NewStore(usersPath())
		removed, err := store.DeleteUser(args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("User %q not found.\n", args[0])
			return nil
		}
		fmt.Printf("User %q has been deleted.\n", args[0])
		return nil
	},
}

// collectUserArgs fills in the missing add-user arguments interactively;
// passwords are read without echo and must be confirmed.
func collectUserArgs(args []string) (username, password, role string, err error) {
	reader := bufio.NewReader(os.Stdin)

	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Please enter the username: ")
		line, rerr := reader.ReadString('\n')
		if rerr != nil {
			return "", "", "", rerr
		}
		username = strings.TrimSpace(line)
	}

	if len(args) > 1 {
		password = args[1]
	} else {
		password, err = promptPassword("Please enter the password: ")
		if err != nil {
			return "", "", "", err
		}
		confirm, cerr := promptPassword("Please confirm the password: ")
		if cerr != nil {
			return "", "", "", cerr
		}
		if password != confirm {
			return "", "", "", fmt.Errorf("passwords do not match")
		}
	}

	role = "user"
	if len(args) > 2 {
		role = args[2]
	}

	return username, password, strings.ToLower(role), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func init() {
	userCmd.AddCommand(userAddCmd, userListCmd, userDeleteCmd)
}
