package cmd

import (
	"context"
	"fmt"
	"time"

	"example.com/backstage/services/repeater/config"
	"example.com/backstage/services/repeater/internal/database"
	"example.com/backstage/services/repeater/internal/keys"
	"example.com/backstage/services/repeater/internal/models"
	"example.com/backstage/services/repeater/internal/repository"

	"github.com/spf13/cobra"
)

var (
	repeaterFriendlyName string
	repeaterNoKey        bool
	repeaterLatitude     float64
	repeaterLongitude    float64
)

// repeaterCmd represents the repeater command
var repeaterCmd = &cobra.Command{
	Use:   "repeater",
	Short: "Manage repeater devices",
	Long:  `Provision, list, and inspect repeater devices.`,
}

// createRepeaterCmd represents the create command
var createRepeaterCmd = &cobra.Command{
	Use:   "create [device-id]",
	Short: "Provision a repeater device",
	Long: `Provision a repeater device with a generated device key. The key is
displayed once and only its hash is stored. Use --no-key to provision an
open device that ingests without a key.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		createRepeater(args[0])
	},
}

// listRepeatersCmd represents the list command
var listRepeatersCmd = &cobra.Command{
	Use:   "list",
	Short: "List all repeater devices",
	Run: func(cmd *cobra.Command, args []string) {
		listRepeaters()
	},
}

func init() {
	rootCmd.AddCommand(repeaterCmd)
	repeaterCmd.AddCommand(createRepeaterCmd)
	repeaterCmd.AddCommand(listRepeatersCmd)

	createRepeaterCmd.Flags().StringVarP(&repeaterFriendlyName, "friendly", "f", "", "Friendly name for the device")
	createRepeaterCmd.Flags().BoolVar(&repeaterNoKey, "no-key", false, "Provision without a device key (open device)")
	createRepeaterCmd.Flags().Float64Var(&repeaterLatitude, "lat", 0, "Device latitude")
	createRepeaterCmd.Flags().Float64Var(&repeaterLongitude, "lon", 0, "Device longitude")
}

// createRepeater provisions a device row, generating a key unless --no-key
func createRepeater(deviceID string) {
	if len(deviceID) > 20 {
		log.Fatalf("Device ID must be at most 20 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Info("Connecting to database...")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewRepository(db)

	device := &models.RepeaterDevice{
		Device:       deviceID,
		FriendlyName: repeaterFriendlyName,
		Enabled:      true,
	}
	if repeaterLatitude != 0 || repeaterLongitude != 0 {
		device.Latitude = &repeaterLatitude
		device.Longitude = &repeaterLongitude
	}

	var plaintext string
	if !repeaterNoKey {
		var salt, hash string
		plaintext, salt, hash, err = keys.Generate()
		if err != nil {
			log.Fatalf("Failed to generate device key: %v", err)
		}
		device.Salt = salt
		device.APIKeyHash = hash
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.SaveDevice(ctx, device); err != nil {
		log.Fatalf("Failed to save device: %v", err)
	}

	fmt.Println("=================================================================")
	fmt.Println("Repeater device provisioned successfully!")
	fmt.Println("=================================================================")
	fmt.Printf("Device ID: %s\n", device.Device)
	if device.FriendlyName != "" {
		fmt.Printf("Friendly Name: %s\n", device.FriendlyName)
	}
	if repeaterNoKey {
		fmt.Println("Device Key: none (open device)")
	} else {
		fmt.Println("-----------------------------------------------------------------")
		fmt.Printf("Device Key: %s\n", plaintext)
		fmt.Println("-----------------------------------------------------------------")
		fmt.Println("IMPORTANT: Store this key securely. It won't be displayed again.")
	}
	fmt.Println("=================================================================")
}

// listRepeaters lists all provisioned devices
func listRepeaters() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Info("Connecting to database...")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := repo.ListDevices(ctx)
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	fmt.Println("=================================================================")
	fmt.Printf("Total Repeater Devices: %d\n", len(devices))
	fmt.Println("=================================================================")
	for _, device := range devices {
		fmt.Printf("Device ID: %s\n", device.Device)
		if device.FriendlyName != "" {
			fmt.Printf("Friendly Name: %s\n", device.FriendlyName)
		}
		fmt.Printf("Enabled: %t\n", device.Enabled)
		if device.APIKeyHash != "" {
			fmt.Println("Device Key: set")
		} else {
			fmt.Println("Device Key: none (open device)")
		}
		fmt.Printf("Created: %s\n", device.CreatedAt.Format(time.RFC3339))
		fmt.Println("-----------------------------------------------------------------")
	}
}
