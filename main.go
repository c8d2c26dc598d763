package main

import "github.com/vigilcam/vigil/cmd"

func main() {
	cmd.Execute()
}
