package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Entervio/entervio/internal/geo"
	"github.com/Entervio/entervio/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var locateCmd = &cobra.Command{
	Use:   "locate <name>",
	Short: "Resolve a French place name to its administrative kind and code",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		locate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)

	locateCmd.Flags().StringP("kind", "k", "", "lookup hint: region, department or commune")
}

// locate is a debug helper for the geo resolver.
func locate(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	query := strings.Join(args, " ")

	hint := geo.HintUnknown
	switch cmd.Flag("kind").Value.String() {
	case "region":
		hint = geo.HintRegion
	case "department":
		hint = geo.HintDepartment
	case "commune":
		hint = geo.HintCommune
	}

	location := geo.New(logger).Resolve(ctx, query, hint)
	if location.None() {
		logger.Info("no match found", zap.String("query", query))
		return
	}

	fmt.Printf("%s %s (%s)\n", location.Kind, location.Code, location.Name)
	if location.DepartmentCode != "" {
		fmt.Printf("department: %s\n", location.DepartmentCode)
	}
}
