package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/kybernus/license-api/pkg/client"
)

// Example pairs a device and checks the resulting license
func Example() {
	c := client.NewClient(client.Config{})
	ctx := context.Background()

	code, err := c.Device().RequestCode(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Open %s and enter %s\n", code.VerificationURL, code.UserCode)

	poll, err := c.Device().WaitForAuthorization(ctx, code)
	if err != nil {
		log.Fatal(err)
	}

	v, err := c.Licenses().Validate(ctx, poll.LicenseKey)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v.Message)
}

// ExampleLicenseService_Consume reserves quota before creating a project
func ExampleLicenseService_Consume() {
	c := client.NewClient(client.Config{})

	usage, err := c.Licenses().Consume(context.Background(), "KYB-TRIAL-1A2B-3C4D-5E6F-89ABCDEF")
	if client.ErrorCode(err) == client.CodeQuotaExceeded {
		fmt.Println(usage.Message)
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d projects used\n", usage.Usage)
}
