package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"go-skywatch/broadcast"
	"go-skywatch/chat"
	"go-skywatch/cronjobs"
	"go-skywatch/db"
	"go-skywatch/geocode"
	"go-skywatch/objects"
	"go-skywatch/routes"
	"go-skywatch/types"
)

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Print and check env
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey != "" {
		fmt.Println("OPENAI_API_KEY loaded")
	}

	clientURL := os.Getenv("CLIENT_URL")
	fmt.Println("CLIENT_URL: ", clientURL)

	// Init firestore
	firestoreClient, err := db.InitFirestore()
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	defer db.CloseFirestore() // Firestore client is closed on exit
	store := db.NewDocumentStore(firestoreClient)

	// Broadcast hub fans object and chat events out to every subscriber
	hub := broadcast.NewHub()
	go hub.Run()

	openaiClient := openai.NewClient(apiKey)
	chatSvc := chat.NewService(openaiClient, hub, apiKey)
	objectsSvc := objects.NewService(store, hub, chatSvc, geocode.ReverseCountry)

	// Inbound approval events re-enter the classification workflow
	hub.SetApproveHandler(func(data types.ObjectData) {
		objectsSvc.ApproveClassification(context.Background(), data)
	})

	// Initialize cron jobs
	cronjobs.InitCronJobs(firestoreClient, store, hub)

	r := routes.SetupRouter(objectsSvc, chatSvc, hub)
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
