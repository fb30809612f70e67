package main

import "github.com/Sayiza/orapgsync/cmd"

func main() {
	cmd.Execute()
}
