package logging

import (
	"os"
	"path"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the resolved form of the logging flags.
type Config struct {
	ConsoleLevel log.Lvl
	DirLevel     log.Lvl
	ConsoleJson  bool
	DirJson      bool
	DirPath      string
	DirMaxSize   datasize.ByteSize
}

func ConfigFromCtx(ctx *cli.Context) Config {
	cfg := Config{
		ConsoleJson: ctx.Bool(LogJsonFlag.Name) || ctx.Bool(LogConsoleJsonFlag.Name),
		DirJson:     ctx.Bool(LogDirJsonFlag.Name),
		DirPath:     ctx.String(LogDirPathFlag.Name),
		DirMaxSize:  100 * datasize.MB,
	}

	var lErr error
	cfg.ConsoleLevel, lErr = tryGetLogLevel(ctx.String(LogConsoleVerbosityFlag.Name))
	if lErr != nil {
		// try verbosity flag
		cfg.ConsoleLevel, lErr = tryGetLogLevel(ctx.String(LogVerbosityFlag.Name))
		if lErr != nil {
			cfg.ConsoleLevel = log.LvlInfo
		}
	}

	dirLevel, dErr := tryGetLogLevel(ctx.String(LogDirVerbosityFlag.Name))
	if dErr != nil {
		dirLevel = log.LvlInfo
	}
	cfg.DirLevel = dirLevel

	if maxSize, err := datasize.ParseString(ctx.String(LogDirMaxSizeFlag.Name)); err == nil && maxSize > 0 {
		cfg.DirMaxSize = maxSize
	}
	return cfg
}

// SetupLoggerCtx configures the root logger from the command line and
// returns it.
func SetupLoggerCtx(filePrefix string, ctx *cli.Context) log.Logger {
	initSeparatedLogging(filePrefix, ConfigFromCtx(ctx))
	return log.Root()
}

func initSeparatedLogging(filePrefix string, cfg Config) {
	logger := log.Root()

	if cfg.ConsoleJson {
		log.Root().SetHandler(log.LvlFilterHandler(cfg.ConsoleLevel, log.StreamHandler(os.Stderr, log.JsonFormat())))
	} else {
		log.Root().SetHandler(log.LvlFilterHandler(cfg.ConsoleLevel, log.StderrHandler))
	}

	if len(cfg.DirPath) == 0 {
		logger.Debug("no log dir set, console logging only")
		return
	}

	err := os.MkdirAll(cfg.DirPath, 0764)
	if err != nil {
		logger.Warn("failed to create log dir, console logging only")
		return
	}

	dirFormat := log.TerminalFormatNoColor()
	if cfg.DirJson {
		dirFormat = log.JsonFormat()
	}

	lumberjack := &lumberjack.Logger{
		Filename:   path.Join(cfg.DirPath, filePrefix+".log"),
		MaxSize:    max(int(cfg.DirMaxSize/datasize.MB), 1), // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}
	userLog := log.StreamHandler(lumberjack, dirFormat)

	mux := log.MultiHandler(logger.GetHandler(), log.LvlFilterHandler(cfg.DirLevel, userLog))
	log.Root().SetHandler(mux)
	logger.Info("logging to file system", "log dir", cfg.DirPath, "file prefix", filePrefix, "log level", cfg.DirLevel, "json", cfg.DirJson)
}

func tryGetLogLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
