package cli_test

import (
	"bytes"
	"fmt"

	"github.com/mistifyio/chainnet/internal/cli"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

type printable struct {
	ID string `json:"id"`
}

func (p printable) String() string {
	return fmt.Sprintf("item %s", p.ID)
}

func (s *CLISuite) TestCheckID() {
	s.NoError(cli.CheckID(uuid.New()))
	s.Error(cli.CheckID("asdf"))
	s.Error(cli.CheckID(""))
}

func (s *CLISuite) TestPrint() {
	var buf bytes.Buffer
	p := printable{ID: "asdf"}

	s.NoError(cli.Print(&buf, p, false))
	s.NoError(cli.Print(&buf, p, true))
	s.Equal("item asdf\n{\"id\":\"asdf\"}\n", buf.String())
}

func (s *CLISuite) TestSetupLogging() {
	defer func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	}()

	s.NoError(cli.SetupLogging("debug", "json"))
	s.Equal(log.DebugLevel, log.GetLevel())
	s.IsType(&log.JSONFormatter{}, log.StandardLogger().Formatter)

	s.NoError(cli.SetupLogging("warning", "text"))
	s.Equal(log.WarnLevel, log.GetLevel())
	s.IsType(&log.TextFormatter{}, log.StandardLogger().Formatter)

	s.Error(cli.SetupLogging("loud", "text"))
	s.Error(cli.SetupLogging("info", "xml"))
}
