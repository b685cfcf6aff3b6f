// Package awstest provides in-memory fakes for the narrow AWS client
// interfaces in awsx, good enough for the expression shapes the stores use.
package awstest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoFake stores items per table: table -> pkValue -> item.
// It evaluates the condition and update expressions the stores actually
// emit: attribute_not_exists(pk), "name = :val" equality conditions,
// SET/ADD update clauses and "name = :val" key conditions on queries.
type DynamoFake struct {
	mu     sync.Mutex
	pks    map[string]string // table -> pk attribute name
	tables map[string]map[string]map[string]types.AttributeValue
}

func NewDynamoFake() *DynamoFake {
	return &DynamoFake{
		pks:    map[string]string{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

// AddTable registers a table with its primary key attribute name.
func (f *DynamoFake) AddTable(name, pk string) *DynamoFake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pks[name] = pk
	f.tables[name] = map[string]map[string]types.AttributeValue{}
	return f
}

// Seed inserts an item directly, bypassing conditions.
func (f *DynamoFake) Seed(table string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table][f.pkValue(table, item)] = item
}

// Item returns a stored item (nil if absent) for assertions.
func (f *DynamoFake) Item(table, pk string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table][pk]
}

func (f *DynamoFake) pkValue(table string, item map[string]types.AttributeValue) string {
	pk := f.pks[table]
	if v, ok := item[pk].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *DynamoFake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := *params.TableName
	items, ok := f.tables[table]
	if !ok {
		return nil, errors.New("awstest: unknown table " + table)
	}
	pk := f.pkValue(table, params.Item)
	if pk == "" {
		return nil, errors.New("awstest: item missing table pk")
	}
	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		if strings.HasPrefix(cond, "attribute_not_exists(") {
			if _, exists := items[pk]; exists {
				return nil, &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}
			}
		}
	}
	items[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (f *DynamoFake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := *params.TableName
	pk := f.pkValue(table, params.Key)
	item, ok := f.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *DynamoFake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := *params.TableName
	pk := f.pkValue(table, params.Key)
	item, exists := f.tables[table][pk]

	if params.ConditionExpression != nil {
		cond := resolveNames(*params.ConditionExpression, params.ExpressionAttributeNames)
		if err := f.checkCondition(cond, item, exists, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}

	// UpdateItem upserts when the key is absent and no condition blocked it.
	if !exists {
		item = map[string]types.AttributeValue{}
		pkAttr := f.pks[table]
		item[pkAttr] = params.Key[pkAttr]
		f.tables[table][pk] = item
	}

	expr := resolveNames(*params.UpdateExpression, params.ExpressionAttributeNames)
	applyUpdate(expr, item, params.ExpressionAttributeValues)
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *DynamoFake) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := *params.TableName
	expr := resolveNames(*params.KeyConditionExpression, params.ExpressionAttributeNames)
	attr, placeholder, ok := parseEquality(expr)
	if !ok {
		return nil, errors.New("awstest: unsupported key condition " + expr)
	}
	want, ok := params.ExpressionAttributeValues[placeholder].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("awstest: key condition value must be a string")
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.tables[table] {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok && v.Value == want.Value {
			matched = append(matched, copyItem(item))
		}
	}
	// newest-first when the caller asked for reverse index order
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		sort.Slice(matched, func(i, j int) bool {
			return stringAttr(matched[i], "created_at") > stringAttr(matched[j], "created_at")
		})
	}
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}
	return &dyn.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (f *DynamoFake) checkCondition(cond string, item map[string]types.AttributeValue, exists bool, values map[string]types.AttributeValue) error {
	failed := &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}
	if strings.HasPrefix(cond, "attribute_not_exists(") {
		if exists {
			return failed
		}
		return nil
	}
	if strings.HasPrefix(cond, "attribute_exists(") {
		if !exists {
			return failed
		}
		return nil
	}
	attr, placeholder, ok := parseEquality(cond)
	if !ok {
		return errors.New("awstest: unsupported condition " + cond)
	}
	if !exists {
		return failed
	}
	curr, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return failed
	}
	want, ok := values[placeholder].(*types.AttributeValueMemberS)
	if !ok || curr.Value != want.Value {
		return failed
	}
	return nil
}

// applyUpdate handles "SET a = :x, b = :y" and "ADD a :x" clauses, in any order.
func applyUpdate(expr string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) {
	for _, clause := range splitClauses(expr) {
		switch {
		case strings.HasPrefix(clause, "SET "):
			for _, assign := range strings.Split(clause[4:], ",") {
				parts := strings.SplitN(assign, "=", 2)
				if len(parts) != 2 {
					continue
				}
				attr := strings.TrimSpace(parts[0])
				placeholder := strings.TrimSpace(parts[1])
				if v, ok := values[placeholder]; ok {
					item[attr] = v
				}
			}
		case strings.HasPrefix(clause, "ADD "):
			for _, add := range strings.Split(clause[4:], ",") {
				fields := strings.Fields(add)
				if len(fields) != 2 {
					continue
				}
				attr, placeholder := fields[0], fields[1]
				delta := numValue(values[placeholder])
				curr := numValue(item[attr])
				item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(curr+delta, 'f', -1, 64)}
			}
		}
	}
}

// splitClauses separates top-level SET/ADD sections of an update expression.
func splitClauses(expr string) []string {
	var clauses []string
	rest := strings.TrimSpace(expr)
	for rest != "" {
		next := len(rest)
		for _, kw := range []string{" SET ", " ADD "} {
			if i := strings.Index(rest[1:], kw); i >= 0 && i+1 < next {
				next = i + 1
			}
		}
		clauses = append(clauses, strings.TrimSpace(rest[:next]))
		rest = strings.TrimSpace(rest[next:])
	}
	return clauses
}

func parseEquality(expr string) (attr, placeholder string, ok bool) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func resolveNames(expr string, names map[string]string) string {
	for alias, name := range names {
		expr = strings.ReplaceAll(expr, alias, name)
	}
	return expr
}

func numValue(v types.AttributeValue) float64 {
	if n, ok := v.(*types.AttributeValueMemberN); ok {
		f, _ := strconv.ParseFloat(n.Value, 64)
		return f
	}
	return 0
}

func stringAttr(item map[string]types.AttributeValue, attr string) string {
	if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
