package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ohcore/fbekeyd/internal/app"
	"github.com/ohcore/fbekeyd/internal/config"
	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

func getUserCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "add-user",
			Usage: "Record a new user in state CREATED",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.AddUser(userID(cmd))
				})
			},
		},
		{
			Name:  "remove-user",
			Usage: "Erase a user's record (requires state CREATED)",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.RemoveUser(userID(cmd))
				})
			},
		},
		{
			Name:  "prepare-user-dirs",
			Usage: "Create a user's directory tree and move it to state PREPARED",
			Flags: []cli.Flag{userIDFlag, el1Flag, el2Flag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.PrepareUserDirs(userID(cmd), dirFlags(cmd))
				})
			},
		},
		{
			Name:  "destroy-user-dirs",
			Usage: "Remove a user's directory tree and move it back to state CREATED",
			Flags: []cli.Flag{userIDFlag, el1Flag, el2Flag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.DestroyUserDirs(userID(cmd), dirFlags(cmd))
				})
			},
		},
		{
			Name:  "start-user",
			Usage: "Bind-mount a user's storage and move it to state STARTED",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.StartUser(userID(cmd))
				})
			},
		},
		{
			Name:  "stop-user",
			Usage: "Unmount a user's storage and move it back to state PREPARED",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withUserManager(func(um userManagerAPI) error {
					return um.StopUser(userID(cmd))
				})
			},
		},
	}
}

// userManagerAPI is the narrow interface user_commands.go needs, matching
// usecase.UserManagerAPI.
type userManagerAPI = interface {
	AddUser(userID uint32) error
	RemoveUser(userID uint32) error
	PrepareUserDirs(userID uint32, flags domain.DirFlag) error
	DestroyUserDirs(userID uint32, flags domain.DirFlag) error
	StartUser(userID uint32) error
	StopUser(userID uint32) error
}

func withUserManager(fn func(userManagerAPI) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(context.Background(), container, logger)

	userManager, err := container.UserManager()
	if err != nil {
		return fmt.Errorf("failed to initialize user manager: %w", err)
	}
	return fn(userManager)
}
