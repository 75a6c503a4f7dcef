package main

type FileConfig = fileConfig

var (
	NewApp            = newApp
	NewLogger         = newLogger
	LoadFileConfig    = loadFileConfig
	ParseColumnPolicy = parseColumnPolicy
	LoadDotEnv        = loadDotEnv
)
