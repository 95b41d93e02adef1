package main

import "watch-match-backend/cmd"

func main() {
	cmd.Run()
}
