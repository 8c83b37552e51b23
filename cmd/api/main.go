package main

import "lifedigital/internal/app"

// @title           Life Digital API
// @version         1.0
// @description     Backend de originação de crédito: verificação de identidade, uploads, margem e simulações.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	app.Run()
}
