// Command gentoken prints a development token for a user id.
package main

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/devconnector/internal/testauth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gentoken <user-id>")
		os.Exit(2)
	}

	token, err := testauth.Token(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"), os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("JWT Token:")
	fmt.Println(token)
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'x-auth-token: %s' http://localhost:5000/api/auth\n", token)
}
