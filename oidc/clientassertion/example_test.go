// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/oidcrp/jwt"
)

func ExampleNewJWTWithKey() {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	j, err := NewJWTWithKey("client-id", []string{"https://server.example.com/token"}, jwt.ES256, privKey,
		// note: for some providers, the key ID may be an x5t derivation
		WithKeyID("client-key"),
	)
	if err != nil {
		log.Fatal(err)
	}
	signed, err := j.Serialize()
	if err != nil {
		log.Fatal(err)
	}

	// decode and inspect the JWT -- this is the IDP's job,
	// but it illustrates the example.
	token, err := josejwt.ParseSigned(signed, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		log.Fatal(err)
	}
	var claims josejwt.Claims
	if err := token.Claims(&privKey.PublicKey, &claims); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("kid: %s; iss: %s; sub: %s; aud: %v\n",
		token.Headers[0].KeyID, claims.Issuer, claims.Subject, claims.Audience)

	// Output:
	// kid: client-key; iss: client-id; sub: client-id; aud: [https://server.example.com/token]
}
