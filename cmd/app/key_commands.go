package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ohcore/fbekeyd/internal/app"
	"github.com/ohcore/fbekeyd/internal/config"
	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-user-keys",
			Usage: "Provision a user's EL1/EL2 keys and install them in the kernel",
			Flags: []cli.Flag{userIDFlag, el1Flag, el2Flag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.GenerateUserKeys(userID(cmd), dirFlags(cmd))
				})
			},
		},
		{
			Name:  "delete-user-keys",
			Usage: "Remove a user's EL1/EL2 keys from the kernel and from disk",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.DeleteUserKeys(userID(cmd))
				})
			},
		},
		{
			Name:  "update-user-auth",
			Usage: "Re-seal a user's EL2 key under a new credential",
			Flags: []cli.Flag{userIDFlag, tokenFlag, composePwdFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.UpdateUserAuth(userID(cmd), userAuth(cmd))
				})
			},
		},
		{
			Name:  "active-user-key",
			Usage: "Restore a user's EL2 key from disk and install it in the kernel",
			Flags: []cli.Flag{userIDFlag, tokenFlag, composePwdFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.ActiveUserKey(userID(cmd), userAuth(cmd))
				})
			},
		},
		{
			Name:  "inactive-user-key",
			Usage: "Remove a user's EL2 key from the kernel, keeping it on disk",
			Flags: []cli.Flag{userIDFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.InactiveUserKey(userID(cmd))
				})
			},
		},
		{
			Name:  "set-el-policy",
			Usage: "Tag directories with the encryption policy of a cataloged key",
			Flags: []cli.Flag{
				userIDFlag,
				&cli.StringFlag{Name: "level", Value: "el1", Usage: "Encryption level: el1 or el2"},
				&cli.StringSliceFlag{Name: "path", Required: true, Usage: "Directory to tag (repeatable)"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				level, err := parseLevel(cmd.String("level"))
				if err != nil {
					return err
				}
				return withKeyManager(ctx, func(km keyManagerAPI) error {
					return km.SetDirectoryElPolicy(userID(cmd), level, cmd.StringSlice("path"))
				})
			},
		},
	}
}

// keyManagerAPI is the narrow interface key_commands.go needs, matching
// usecase.KeyManagerAPI — kept local so this file doesn't have to import
// the usecase package just to name the parameter type of withKeyManager.
type keyManagerAPI = interface {
	GenerateUserKeys(userID uint32, flags domain.DirFlag) error
	DeleteUserKeys(userID uint32) error
	UpdateUserAuth(userID uint32, newAuth domain.UserAuth) error
	ActiveUserKey(userID uint32, auth domain.UserAuth) error
	InactiveUserKey(userID uint32) error
	SetDirectoryElPolicy(userID uint32, level domain.ELevel, paths []string) error
}

func withKeyManager(ctx context.Context, fn func(keyManagerAPI) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	keyManager, err := container.KeyManager(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	return fn(keyManager)
}

func parseLevel(s string) (domain.ELevel, error) {
	switch s {
	case "el1":
		return domain.EL1, nil
	case "el2":
		return domain.EL2, nil
	default:
		return 0, fmt.Errorf("invalid level: %s (valid options: el1, el2)", s)
	}
}
