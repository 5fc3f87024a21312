package main

import (
	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/pkg/logger"
)

// Applies the schema. Run once before the first API start and after any
// model change.
func main() {
	if err := config.Init("config.yaml"); err != nil {
		logger.Fatal(err, "%v: invalid configuration", config.ModuleSetting)
	}

	db, err := database.GetDB()
	if err != nil {
		logger.Fatal(err, "%v: cannot connect", config.ModuleDatabase)
	}

	err = db.AutoMigrate(
		&model.Book{},
		&model.Chapter{},
		&model.ProcessingJob{},
		&model.AudioFile{},
	)
	if err != nil {
		logger.Fatal(err, "%v: migration failed", config.ModuleDatabase)
	}
	logger.Info("%v: schema up to date", config.ModuleDatabase)
}
