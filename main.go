package main

import "lessonload/cmd"

func main() {
	cmd.Execute()
}
