package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mmcdole/artisec/pkg/authorization"
	"github.com/mmcdole/artisec/pkg/cache"
	"github.com/mmcdole/artisec/pkg/config"
	"github.com/mmcdole/artisec/pkg/execctx"
	"github.com/mmcdole/artisec/pkg/grantfile"
	"github.com/mmcdole/artisec/pkg/logging"
	"github.com/mmcdole/artisec/pkg/permission"
)

func newGrantsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Inspect what a user's grants resolve to",
	}
	cmd.AddCommand(newGrantsResolveCommand())
	return cmd
}

func newGrantsResolveCommand() *cobra.Command {
	var (
		configPath string
		userID     string
		path       string
		atomName   string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve whether a user's grants allow a permission at an artifact path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrantsResolve(cmd, configPath, userID, path, atomName)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the engine's YAML configuration file")
	cmd.Flags().StringVar(&userID, "user", "", "user login ID to resolve grants for")
	cmd.Flags().StringVar(&path, "path", "/", "artifact path to resolve, e.g. /orders/view")
	cmd.Flags().StringVar(&atomName, "permission", string(permission.View), "permission atom to check, e.g. READ")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runGrantsResolve(cmd *cobra.Command, configPath, userID, path, atomName string) error {
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.AuditLogPath, "", loggingLevel(cfg.Debug)); err != nil {
		return err
	}

	source, err := grantfile.Load(fs, cfg.GrantsFilePath, logging.Audit)
	if err != nil {
		return err
	}

	controllers := newControllerCache(cfg)
	mgr := authorization.NewManager(source, nil, controllers)
	mgr.SetDisabled(cfg.Disabled)

	ec := execctx.New(userID, nil)
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			continue
		}
		ec.Stack().Push(execctx.Artifact{Name: segment, Type: execctx.ArtifactOther})
	}

	ctx := context.Background()
	ac, err := mgr.GetAccessController(ctx, ec)
	if err != nil {
		return fmt.Errorf("building access controller for %s: %w", userID, err)
	}
	ec.SetAccessController(ac)

	atom := permission.Atom(strings.ToUpper(atomName))
	if !permission.ValidAtom(atom) {
		return fmt.Errorf("not a recognized permission atom: %s", atomName)
	}

	checkErr := ac.CheckPermissionContext(ctx, ec, permission.Of(atom))

	out := cmd.OutOrStdout()
	if checkErr == nil {
		fmt.Fprintf(out, "GRANTED  user=%s path=%s permission=%s\n", userID, ec.Stack().Path(), atom)
		return nil
	}

	var denied *authorization.AccessDeniedError
	if asAccessDenied(checkErr, &denied) {
		fmt.Fprintf(out, "DENIED   user=%s path=%s permission=%s reason=%s\n", userID, ec.Stack().Path(), atom, denied.Reason)
		return nil
	}
	return checkErr
}

func asAccessDenied(err error, target **authorization.AccessDeniedError) bool {
	denied, ok := err.(*authorization.AccessDeniedError)
	if ok {
		*target = denied
	}
	return ok
}

func newControllerCache(cfg *config.Config) *cache.Cache[string, *authorization.AccessController] {
	tuning := cfg.TuningFor("accessControllers")
	ccfg := cache.Config{
		MaxInMemory: tuning.MaxInMemory,
		ExpireAfter: secondsToDuration(tuning.ExpireTimeSeconds),
	}
	return cache.New[string, *authorization.AccessController]("accessControllers", ccfg, nil, nil, nil)
}

func loggingLevel(debug bool) logging.LogLevel {
	if debug {
		return logging.LogLevelDebug
	}
	return logging.LogLevelInfo
}
