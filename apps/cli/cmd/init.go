package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/restbench/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new restbench project",
	Long: `Initialize a new restbench project in the current directory.

This creates:
  - .restbench.json  - Configuration file with environments
  - example.yaml     - Example collection

Examples:
  restbench init
  restbench init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleCollection = `name: Example API
auth:
  type: bearer
  token: "{{token}}"
headers:
  - key: Accept
    value: application/json
items:
  - name: Health
    auth:
      type: none
    request:
      url: "{{baseUrl}}/health"
    checks:
      - subject: status
        assert: equal
        args: [200]

  - name: Resources
    variables:
      - key: resourceName
        value: Test Resource
    items:
      - name: Create resource
        request:
          method: POST
          url: "{{baseUrl}}/resources"
          headers:
            - key: Content-Type
              value: application/json
          body: |
            {"name": "{{resourceName}}", "requestId": "{{uuid()}}"}
        checks:
          - subject: status
            assert: equal
            args: [201]
          - subject: body.id
            assert: exist
          - subject: body.name
            assert: equal
            args: ["Test Resource"]
        captures:
          - name: resourceId
            from: body.id

      - name: Get resource
        request:
          url: "{{baseUrl}}/resources/{{resourceId}}"
        checks:
          - subject: status
            assert: equal
            args: [200]

      - name: List resources
        weight: 5
        request:
          url: "{{baseUrl}}/resources"
        checks:
          - subject: status
            assert: equal
            args: [200]
          - subject: body
            assert: a
            args: [array]
          - subject: duration
            assert: below
            args: [500]
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "restbench/" + version}
	cfg.Environments = map[string]map[string]any{
		"dev": {
			"baseUrl": "http://localhost:3000",
			"token":   "dev-token",
		},
		"staging": {
			"baseUrl": "https://staging.api.example.com",
		},
		"prod": {
			"baseUrl": "https://api.example.com",
		},
	}
	cfg.StressProfiles = map[string]config.StressProfile{
		"smoke": {Duration: "30s", Rate: 5, Thresholds: "p95<500ms,errors<1%"},
		"load":  {Mode: "workers", Duration: "5m", Workers: 50, RampUp: "30s", ThinkTime: "1s", Thresholds: "p95<300ms,errors<0.5%"},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleCollection), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nrestbench project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'restbench run example.yaml' to execute the example collection.\n")

	return nil
}
