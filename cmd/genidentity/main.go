package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/samsameer/meshriderwave-sub002/pkg/auth"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
)

func main() {
	uri := flag.String("uri", "", "MCPTT URI to bind the new mesh identity to")
	name := flag.String("name", "", "Optional display name")
	brokerPass := flag.String("broker-pass", "", "Generate a broker credential hash instead of a mesh identity")
	flag.Parse()

	if *brokerPass != "" {
		hash, salt := auth.GenerateHashAndSalt(*brokerPass)
		fmt.Printf("PasswordHash: %s\n", hash)
		fmt.Printf("Salt:         %s\n", salt)
		return
	}

	if *uri == "" {
		fmt.Fprintln(os.Stderr, "usage: genidentity -uri sip:user@example.org [-name \"Display Name\"] | -broker-pass <password>")
		os.Exit(1)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Printf("Error generating keypair: %v\n", err)
		return
	}

	meshKey := hex.EncodeToString(pub)
	x25519, err := identity.Ed25519ToX25519(pub)
	if err != nil {
		fmt.Printf("Error converting public key: %v\n", err)
		return
	}

	fmt.Printf("Mesh key (public):  %s\n", meshKey)
	fmt.Printf("X25519 form:        %s\n", hex.EncodeToString(x25519))
	fmt.Printf("Private key (seed): %s\n", hex.EncodeToString(priv.Seed()))
	fmt.Println()
	fmt.Println("Provisioning SQL:")
	fmt.Printf("INSERT INTO identity_mappings (mesh_key, mcptt_uri, display_name) VALUES ('%s', '%s', '%s');\n",
		meshKey, *uri, *name)
}
