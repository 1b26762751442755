package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/gqlserve/internal/schema"
)

const testSDL = `
type Query {
  hero: Character
  heroes: [Character!]
  droid(id: ID!): Droid
  greeting(name: String = "world"): String
  number: Int!
  numbers(limit: Int): [Int]
  strictNumbers: [Int!]
  search: [SearchResult]
}

type Mutation {
  rename(name: String!): String
}

type Subscription {
  ticks: Int
}

interface Character {
  name: String!
  friends: [Character]
}

type Human implements Character {
  name: String!
  friends: [Character]
  height: Float
}

type Droid implements Character {
  name: String!
  friends: [Character]
  primaryFunction: String
}

union SearchResult = Human | Droid
`

func newTestExecutor(t *testing.T, rt Runtime, opts ...Option) *Executor {
	t.Helper()
	e, err := NewExecutor(rt, schema.MustBuildFromSDL(testSDL), opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// execJSON executes query and returns the serialized result as a plain value.
func execJSON(t *testing.T, e *Executor, params Params) map[string]any {
	t.Helper()
	res := e.Execute(context.Background(), params)
	b, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}
