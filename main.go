package main

import "github.com/louiss0/access-sharepoint-migrator/cmd"

func main() {
	cmd.Execute()
}
