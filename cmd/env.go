package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

// ConfigCheckResult holds the result of credential validation
type ConfigCheckResult struct {
	Missing  []string          // Provider credentials that are missing
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// EnvCommand returns the env command, which reports which provider and
// sink credentials are visible to the process.
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Check provider and Langfuse credentials in the environment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load additional variables from a .env file first",
			},
		},
		Action: func(c *cli.Context) error {
			if path := c.String("env-file"); path != "" {
				if err := LoadEnvFile(path); err != nil {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}
			PrintConfigCheck(CheckRequiredConfig())
			return nil
		},
	}
}

// CheckRequiredConfig reports which credential variables are set
func CheckRequiredConfig() *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	// At least one provider key must be present
	providerVars := []string{
		"OPENAI_API_KEY",
		"GEMINI_API_KEY",
		"ANTHROPIC_API_KEY",
		"COHERE_API_KEY",
	}

	anyProvider := false
	for _, v := range providerVars {
		val := os.Getenv(v)
		if val == "" {
			result.Missing = append(result.Missing, v)
		} else {
			result.Present[v] = maskSecret(val)
			anyProvider = true
		}
	}

	if !anyProvider {
		result.Warnings = append(result.Warnings, "no provider API key is set; configure at least one provider")
	}

	// Langfuse keys are optional but traces are dropped without them
	sinkVars := []string{"LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY"}
	for _, v := range sinkVars {
		val := os.Getenv(v)
		if val == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s not set; traces will use local fallback identifiers", v))
		} else {
			result.Present[v] = maskSecret(val)
		}
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Credential Check ===")

	if len(result.Missing) > 0 {
		fmt.Println("Unset variables:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		fmt.Println("Configured variables:")
		for k, v := range result.Present {
			fmt.Printf("   - %s = %s\n", k, v)
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	fmt.Println("========================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		os.Setenv(key, value)
	}

	return scanner.Err()
}
