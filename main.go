package main

import "github.com/pannonia-mickey/ClaudeCodeSkills-sub005/cmd"

func main() {
	cmd.Execute()
}
