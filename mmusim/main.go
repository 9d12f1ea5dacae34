// Command mmusim replays virtual address traces through a simulated MMU.
package main

import "github.com/sarchlab/mmusim/mmusim/cmd"

func main() {
	cmd.Execute()
}
