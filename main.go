package main

import finrag "github.com/finrag/finrag/cmd/finrag"

func main() {
	finrag.Main()
}
