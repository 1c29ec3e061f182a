package main

import "workbridge_backend/internal/app"

func main() {
	app.Run()
}
