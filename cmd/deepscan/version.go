package main

import (
	"fmt"

	"github.com/ternarybob/deepscan/internal/common"
)

func runVersion(args []string) int {
	common.LoadVersionFromFile()
	fmt.Printf("DeepScan version %s\n", common.GetFullVersion())
	return 0
}
