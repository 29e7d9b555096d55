package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/deploykit/site-deploy/internal/config"
	"github.com/deploykit/site-deploy/internal/deployer"
	"github.com/deploykit/site-deploy/internal/types"
	"github.com/joho/godotenv"
)

// deployRegion is the region the destination website bucket lives in.
const deployRegion = "us-east-1"

func main() {
	// A .env file is optional; real env always wins.
	_ = godotenv.Load()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		sess, err := newSession()
		if err != nil {
			slog.Error("session failed", "error", err)
			os.Exit(1)
		}
		slog.Info("starting lambda handler")
		lambda.Start(deployer.New(sess).HandleS3Event)
		return
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Print(config.Usage())
		os.Exit(types.KindOf(err).ExitCode())
	}

	sess, err := newSession()
	if err != nil {
		slog.Error("session failed", "error", err)
		os.Exit(1)
	}

	if err := deployer.New(sess).Run(context.Background(), cfg); err != nil {
		slog.Error("deploy failed", "error", err)
		os.Exit(types.KindOf(err).ExitCode())
	}
}

func newSession() (*session.Session, error) {
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		return session.NewSession(&aws.Config{
			Region:           aws.String(deployRegion),
			Endpoint:         aws.String(endpoint),
			DisableSSL:       aws.Bool(true),
			S3ForcePathStyle: aws.Bool(true),
		})
	}
	return session.NewSession(&aws.Config{
		Region: aws.String(deployRegion),
	})
}
