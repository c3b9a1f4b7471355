// Command cachescope replays memory access traces on a simulated multi-core
// cache hierarchy and reports misses, coherence traffic and false sharing.
package main

import "github.com/sarchlab/cachescope/cachescope/cmd"

func main() {
	cmd.Execute()
}
