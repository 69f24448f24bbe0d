package main

import app "renpy-unapk/internal/app"

func main() {
	app.Run()
}
