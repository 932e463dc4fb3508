package main

import "github.com/joho/godotenv"

func main() {
	// A .env in the working directory feeds the same variables the
	// environment would.
	_ = godotenv.Load()
	Execute()
}
