// Command ptdump reconstructs a traced image from raw and ELF files
// and dumps one byte range from it, without decoding any instructions.
package main

import "github.com/gotrace/ptimage/cmd"

func main() {
	cmd.Execute()
}
