// certctl runs operator actions against the configured database.
//
// Usage:
//
//	certctl analyze --org <uuid>
//	certctl train --org <uuid> [--epochs N] [--learning-rate F] [--batch-size N]
//	certctl predict --org <uuid> --property <uuid> [--property <uuid> ...]
//	certctl promote --org <uuid> --model <uuid>
//	certctl sweep
//	certctl token --org <uuid> --user <uuid> [--role admin] [--ttl 1h]
//	certctl rules import --org <uuid> -f rules.yaml
//	certctl rules list --org <uuid> --type EICR
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
