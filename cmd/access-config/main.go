package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/access"
	"github.com/oarkflow/access/logger"
	"github.com/oarkflow/access/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("access-config - Configuration tool for access")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  access-config convert <input> <output>                        - Convert between formats")
	fmt.Println("  access-config validate <file>                                 - Validate configuration")
	fmt.Println("  access-config stats <file>                                    - Show configuration statistics")
	fmt.Println("  access-config check <file> <user:role,...> <resource> <action> [ctx-json] - Evaluate a decision")
	fmt.Println()
	fmt.Println("Supported formats: .access, .dsl, .yaml, .yml, .json, .bin")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: access-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := access.NewConfigLoader().LoadFile(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)

	inStat, _ := os.Stat(inputFile)
	outStat, _ := os.Stat(outputFile)
	if inStat != nil && outStat != nil {
		reduction := (1 - float64(outStat.Size())/float64(inStat.Size())) * 100
		if reduction > 0 {
			fmt.Printf("Size reduced by %.1f%% (%d -> %d bytes)\n",
				reduction, inStat.Size(), outStat.Size())
		} else {
			fmt.Printf("Size increased by %.1f%% (%d -> %d bytes)\n",
				-reduction, inStat.Size(), outStat.Size())
		}
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := access.NewConfigLoader().LoadFile(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Roles: %d\n", len(cfg.Roles))
	fmt.Printf("  Attributes: %d\n", len(cfg.Attributes))
	fmt.Printf("  Rules: %d\n", len(cfg.Rules))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := access.NewConfigLoader().LoadFile(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Roles:      %d\n", len(cfg.Roles))
	fmt.Printf("  Attributes: %d\n", len(cfg.Attributes))
	fmt.Printf("  Rules:      %d\n", len(cfg.Rules))
	fmt.Println()

	if len(cfg.Rules) > 0 {
		allowCount := 0
		denyCount := 0
		conditioned := 0
		for _, r := range cfg.Rules {
			if r.Effect == access.EffectAllow {
				allowCount++
			} else {
				denyCount++
			}
			if len(r.Condition) > 0 {
				conditioned++
			}
		}
		fmt.Println("Rule Details:")
		fmt.Printf("  Allow rules:       %d\n", allowCount)
		fmt.Printf("  Deny rules:        %d\n", denyCount)
		fmt.Printf("  With conditions:   %d\n", conditioned)
		fmt.Println()
	}

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		for _, r := range cfg.Roles {
			totalPerms += len(r.Permissions)
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permissions: %d\n", totalPerms)
		fmt.Printf("  Avg per role:      %.1f\n", float64(totalPerms)/float64(len(cfg.Roles)))
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Default effect: %s\n", cfg.DefaultEffect)
	strategy := cfg.Evaluation
	if strategy == "" {
		strategy = access.StrategyFirstApplicable
	}
	fmt.Printf("  Strategy:       %s\n", strategy)
	fmt.Printf("  Cache enabled:  %t\n", cfg.Cache.Enabled)
	fmt.Printf("  Cache TTL:      %ds\n", cfg.Cache.TTL)
}

func handleCheck() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: access-config check <file> <user:role,...> <resource> <action> [ctx-json]")
		os.Exit(1)
	}

	filename := os.Args[2]
	userSpec := os.Args[3]
	resource := os.Args[4]
	action := os.Args[5]

	reqCtx := map[string]any{}
	if len(os.Args) > 6 {
		if err := json.Unmarshal([]byte(os.Args[6]), &reqCtx); err != nil {
			fmt.Printf("Error parsing context json: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := access.NewConfigLoader().LoadFile(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	userID := userSpec
	var roleIDs []string
	if idx := strings.Index(userSpec, ":"); idx >= 0 {
		userID = userSpec[:idx]
		roleIDs = strings.Split(userSpec[idx+1:], ",")
	}

	store := stores.NewMemoryUserStore()
	az, err := access.New(cfg, store, access.WithLogger(logger.NewNullLogger()))
	if err != nil {
		fmt.Printf("Error building authorizer: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, roleID := range roleIDs {
		if err := az.AssignRole(ctx, userID, roleID); err != nil {
			fmt.Printf("Error assigning role: %v\n", err)
			os.Exit(1)
		}
	}

	allowed, err := az.Can(ctx, userID, resource, action, reqCtx)
	if err != nil {
		fmt.Printf("Error evaluating: %v\n", err)
		os.Exit(1)
	}
	if allowed {
		fmt.Printf("ALLOW %s %s %s\n", userID, action, resource)
	} else {
		fmt.Printf("DENY %s %s %s\n", userID, action, resource)
		os.Exit(2)
	}
}

func saveConfig(cfg *access.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".bin":
		data, err = cfg.ToBinary()
	case ".access", ".dsl":
		data, err = access.NewDSLEncoder().Encode(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
