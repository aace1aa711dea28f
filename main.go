package main

import "kv-reconciler/cmd"

func main() {
	cmd.Execute()
}
