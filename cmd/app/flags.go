package main

import (
	"github.com/urfave/cli/v3"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

var (
	userIDFlag = &cli.UintFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Required: true,
		Usage:    "Target user ID",
	}
	el1Flag = &cli.BoolFlag{
		Name:  "el1",
		Usage: "Include the EL1 (per-user, credential-independent) tier",
	}
	el2Flag = &cli.BoolFlag{
		Name:  "el2",
		Usage: "Include the EL2 (per-user, authenticated) tier",
	}
	tokenFlag = &cli.StringFlag{
		Name:  "token",
		Usage: "User credential token",
	}
	composePwdFlag = &cli.StringFlag{
		Name:  "compose-pwd",
		Usage: "User compose password, when the device uses a two-factor unlock",
	}
)

func userID(cmd *cli.Command) uint32 {
	return uint32(cmd.Uint("user"))
}

func dirFlags(cmd *cli.Command) domain.DirFlag {
	var flags domain.DirFlag
	if cmd.Bool("el1") {
		flags |= domain.FlagEL1
	}
	if cmd.Bool("el2") {
		flags |= domain.FlagEL2
	}
	return flags
}

func userAuth(cmd *cli.Command) domain.UserAuth {
	return domain.UserAuth{
		Token:      cmd.String("token"),
		ComposePwd: cmd.String("compose-pwd"),
	}
}
