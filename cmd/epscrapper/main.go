// Package main provides the entry point for the epscrapper CLI.
//
// epscrapper collects the endpoints of an authenticated web application.
// It opens the login page in a real browser, waits for the user to finish
// logging in, then records every URL the application touches: links and
// form actions in the DOM plus the network requests the pages fire.
//
// Usage:
//
//	epscrapper scrape <login-url> --dashboard <dashboard-url>
//	epscrapper diff <origin>
//
// See --help for all available options.
package main

// main is the entry point for epscrapper.
func main() {
	Execute()
}
