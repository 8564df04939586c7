package indicator

import (
	"testing"

	"github.com/rxtech-lab/argo-shortbot/mocks"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RSITestSuite struct {
	suite.Suite
}

func TestRSISuite(t *testing.T) {
	suite.Run(t, new(RSITestSuite))
}

func (suite *RSITestSuite) TestNewRSI() {
	rsi, err := NewRSI(14)
	suite.Require().NoError(err)
	suite.Equal(14, rsi.Period())
	suite.Equal(15, rsi.MinCloses())

	_, err = NewRSI(1)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *RSITestSuite) TestInsufficientHistory() {
	rsi, _ := NewRSI(14)

	_, err := rsi.Calculate(make([]float64, 14))
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientHistory))
}

func (suite *RSITestSuite) TestMonotonicSeries() {
	rsi, _ := NewRSI(14)

	up := make([]float64, 30)
	down := make([]float64, 30)

	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}

	v, err := rsi.Calculate(up)
	suite.Require().NoError(err)
	suite.InDelta(100.0, v, 1e-9)

	v, err = rsi.Calculate(down)
	suite.Require().NoError(err)
	suite.InDelta(0.0, v, 1e-9)

	flat := make([]float64, 20)
	v, err = rsi.Calculate(flat)
	suite.Require().NoError(err)
	suite.InDelta(50.0, v, 1e-9)
}

func (suite *RSITestSuite) TestKnownValue() {
	// Alternating +2 / -1 moves: average gain 1, average loss 0.5 over an even window.
	rsi, _ := NewRSI(4)
	closes := []float64{10, 12, 11, 13, 12}

	v, err := rsi.Calculate(closes)
	suite.Require().NoError(err)
	suite.InDelta(100-100/(1+2.0), v, 1e-9)
}

func (suite *RSITestSuite) TestRandomWalkStaysInRange() {
	rsi, _ := NewRSI(14)

	for seed := int64(1); seed <= 20; seed++ {
		closes := mocks.NewDataGenerator(seed).Closes(mocks.DefaultConfig())

		v, err := rsi.Calculate(closes)
		suite.Require().NoError(err)
		suite.GreaterOrEqual(v, 0.0)
		suite.LessOrEqual(v, 100.0)
	}
}

func (suite *RSITestSuite) TestPumpIsOverbought() {
	rsi, _ := NewRSI(14)
	closes := mocks.NewDataGenerator(3).Closes(mocks.PumpConfig())

	v, err := rsi.Calculate(closes)
	suite.Require().NoError(err)
	suite.Greater(v, 95.0)
}
