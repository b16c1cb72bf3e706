package api_test

import (
	"fmt"
	"log"

	"github.com/whit3rabbit/detfm/internal/config"
	"github.com/whit3rabbit/detfm/pkg/api"
)

// Example shows basic library usage: load default configuration and run the
// deobfuscation pipeline against a movie file.
func Example() {
	config.Testing = true
	defer func() { config.Testing = false }()

	if _, err := api.New(api.Options{Silent: true}); err != nil {
		log.Fatalf("failed to create deobfuscator: %v", err)
	}

	fmt.Println("deobfuscator ready")
	// Output: deobfuscator ready
}

// ExampleNew_withConfigOverrides demonstrates overriding loaded config
// fields without hand-authoring a YAML file.
func ExampleNew_withConfigOverrides() {
	config.Testing = true
	defer func() { config.Testing = false }()

	_, err := api.New(api.Options{
		Silent: true,
		ConfigOverrides: map[string]interface{}{
			"proxy.enable": true,
			"proxy.port":   uint16(11801),
		},
	})
	if err != nil {
		log.Fatalf("failed to create deobfuscator: %v", err)
	}

	fmt.Println("deobfuscator ready with proxy enabled")
	// Output: deobfuscator ready with proxy enabled
}

// ExampleDeobfuscator_RunToFile demonstrates the shape of a full run; it
// does not execute one since no movie file is available in this example.
func ExampleDeobfuscator_RunToFile() {
	config.Testing = true
	defer func() { config.Testing = false }()

	_, err := api.New(api.Options{Silent: true})
	if err != nil {
		log.Fatalf("failed to create deobfuscator: %v", err)
	}

	fmt.Println("RunToFile(ctx, inputPath, outputPath) writes the rewritten movie")
	// Output: RunToFile(ctx, inputPath, outputPath) writes the rewritten movie
}

// Example_printInfo demonstrates PrintInfo's Testing-gated output, mirrored
// from internal/config.PrintInfo.
func Example_printInfo() {
	config.Testing = false

	api.PrintInfo("starting deobfuscation\n")

	config.Testing = true
	api.PrintInfo("this line never prints")
	config.Testing = false

	// Output:
	// starting deobfuscation
}
