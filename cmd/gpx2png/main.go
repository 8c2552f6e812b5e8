package main

import "github.com/MeKo-Tech/gpx2png/internal/cmd"

func main() {
	cmd.Execute()
}
