package litani

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExitStatus is the raw result of a launched process, independent of any
// outcome policy. It is the sum-type the design notes call for: a job
// either exited with a code, or it was killed after timing out.
type ExitStatus struct {
	TimedOut   bool
	ReturnCode int
}

// OutcomeTable maps stringified return codes to outcomes, loaded from the
// JSON file referenced by JobSpec.OutcomeTable.
type OutcomeTable map[string]Outcome

// LoadOutcomeTable reads a JSON map<string,Outcome> from path.
func LoadOutcomeTable(path string) (OutcomeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outcome table %s: %w", path, err)
	}
	var table OutcomeTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse outcome table %s: %w", path, err)
	}
	return table, nil
}

// Classify applies the first-rule-wins outcome rules: outcome table,
// then timeout policy, then ignore/ok return lists, then the plain exit
// code. It is a pure function of the exit status, the job's outcome
// policy, and an already-loaded outcome table (nil if none configured),
// so it is unit-testable without spawning a process.
func Classify(status ExitStatus, job *JobSpec, table OutcomeTable) (outcome Outcome, wrapperReturnCode int) {
	if table != nil {
		key := fmt.Sprintf("%d", status.ReturnCode)
		if mapped, ok := table[key]; ok {
			return mapped, wrapperReturnCodeFor(mapped, status.ReturnCode)
		}
	}

	if status.TimedOut {
		switch {
		case job.TimeoutOk:
			return OutcomeSuccess, 0
		case job.TimeoutIgnore:
			return OutcomeFailIgnored, 0
		default:
			return OutcomeFail, nonZero(status.ReturnCode)
		}
	}

	if containsInt(job.IgnoreReturns, status.ReturnCode) {
		return OutcomeSuccess, 0
	}
	if containsInt(job.OkReturns, status.ReturnCode) {
		return OutcomeFailIgnored, 0
	}
	if status.ReturnCode == 0 {
		return OutcomeSuccess, 0
	}
	return OutcomeFail, status.ReturnCode
}

func wrapperReturnCodeFor(outcome Outcome, returnCode int) int {
	if outcome == OutcomeSuccess || outcome == OutcomeFailIgnored {
		return 0
	}
	return nonZero(returnCode)
}

func nonZero(rc int) int {
	if rc == 0 {
		return 1
	}
	return rc
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
