// cmd/main.go
package main

import cmd "github.com/mwiater/gollamachat/cmd/gollamachat"

// main starts the gollamachat CLI application by delegating to the
// cobra root command defined in the gollamachat package.
func main() {
	cmd.Execute()
}
