package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	guda "github.com/LynnColeArt/guda-mc"
)

func newDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print the compute device the runtime executes on",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			dev := guda.GetDevice()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Device %d: %s\n", dev.ID, dev.Name)
			fmt.Fprintf(w, "  Cores:                 %d\n", dev.NumCores)
			fmt.Fprintf(w, "  Max threads:           %d\n", dev.MaxThreads)
			fmt.Fprintf(w, "  Max threads per block: %d\n", dev.MaxThreadsPerBlock)
			fmt.Fprintf(w, "  Max grid size:         %d\n", dev.MaxGridSize)
			fmt.Fprintf(w, "  Memory:                %.1f GiB\n", float64(dev.TotalMem)/(1<<30))
			inUse, _ := guda.DefaultContext().MemoryStats()
			fmt.Fprintf(w, "  Device memory in use:  %d of %d bytes\n", inUse, guda.DefaultContext().MemoryLimit())
			features := "none"
			if len(dev.Features) > 0 {
				features = strings.Join(dev.Features, ", ")
			}
			fmt.Fprintf(w, "  SIMD:                  %s\n", features)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the module version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version, sum := guda.Version()
			if version == "" {
				version = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mcpi %s %s\n", version, sum)
		},
	}
}
