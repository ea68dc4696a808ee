package main

import (
	"context"
	"fmt"

	"github.com/samigerges/workflow-sub001/internal/config"
	"github.com/samigerges/workflow-sub001/internal/database"
	"github.com/samigerges/workflow-sub001/internal/entities"
	"github.com/samigerges/workflow-sub001/internal/logging"
	"github.com/samigerges/workflow-sub001/internal/voting"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo contracts, letters of credit, vessels and documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
}

func runSeed(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.Options{Level: appConfig.LogLevel, Format: appConfig.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := entities.NewStore(db)
	if err != nil {
		return err
	}

	contract, err := store.CreateContract(ctx, "CT-2026-001", decimal.NewFromInt(1000))
	if err != nil {
		return err
	}
	letter, err := store.CreateLetterOfCredit(ctx, "LC-2026-001", decimal.NewFromInt(600))
	if err != nil {
		return err
	}
	vesselQuantities := []struct {
		name     string
		quantity int64
	}{
		{name: "MV Northern Star", quantity: 300},
		{name: "MV Coral Bay", quantity: 250},
	}
	for _, item := range vesselQuantities {
		vessel, err := store.CreateVessel(ctx, contract.ID, item.name, decimal.NewNullDecimal(decimal.NewFromInt(item.quantity)))
		if err != nil {
			return err
		}
		financed := decimal.NewNullDecimal(decimal.NewFromInt(item.quantity - 50))
		if _, err := store.UpsertLetterOfCreditVessel(ctx, letter.ID, vessel.ID, financed); err != nil {
			return err
		}
	}

	request, err := store.CreateContractRequest(ctx, "Wheat shipment Q3")
	if err != nil {
		return err
	}
	for index, name := range []string{"bill_of_lading.pdf", "certificate_of_origin.pdf"} {
		path := fmt.Sprintf("uploads/contract/%d/%d_%s", contract.ID, index+1, name)
		if _, err := store.CreateDocument(ctx, voting.SubjectTypeContract.String(), contract.ID, name, path); err != nil {
			return err
		}
	}

	logger.Info("seed data created",
		zap.Int64("contract_id", contract.ID),
		zap.Int64("letter_of_credit_id", letter.ID),
		zap.Int64("request_id", request.ID))
	return nil
}
