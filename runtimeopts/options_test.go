package runtimeopts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequiresInput(t *testing.T) {
	o := DefaultOptions
	o.Reference = "ref.fa"
	o.Output = "out.table"
	assert.Error(t, o.Validate())
}

func TestValidateDefaultsWithRequiredFieldsOK(t *testing.T) {
	o := DefaultOptions
	o.Input = "in.bam"
	o.Reference = "ref.fa"
	o.Output = "out.table"
	assert.NoError(t, o.Validate())
}

func TestValidateRejectsBadBatchSize(t *testing.T) {
	o := DefaultOptions
	o.Input, o.Reference, o.Output = "in.bam", "ref.fa", "out.table"
	o.BatchSize = 0
	assert.Error(t, o.Validate())
}

func TestValidateRejectsBadContextSize(t *testing.T) {
	o := DefaultOptions
	o.Input, o.Reference, o.Output = "in.bam", "ref.fa", "out.table"
	o.MismatchesContextSize = 7
	assert.Error(t, o.Validate())
}

func TestValidateRejectsNegativeCheckpointInterval(t *testing.T) {
	o := DefaultOptions
	o.Input, o.Reference, o.Output = "in.bam", "ref.fa", "out.table"
	o.CheckpointInterval = -1
	assert.Error(t, o.Validate())
}
