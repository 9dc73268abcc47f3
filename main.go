package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/StreyKenD/AutoTranslationJPEN/cmd"
	"github.com/StreyKenD/AutoTranslationJPEN/internal/utils"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

func main() {
	// Every setting has a default, so .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		utils.ExitOnError("Error loading .env file", err)
	}

	if err := fang.Execute(context.Background(), cmd.RootCmd); err != nil {
		os.Exit(1)
	}
}
