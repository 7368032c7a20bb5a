package normalize

import (
	"petstay-backend/internal/acquire"

	"github.com/tidwall/gjson"
)

// graphqlData returns the value at path inside a GraphQL response body,
// surfacing the first reported error when the path is absent.
func graphqlData(t acquire.TargetType, body []byte, path string) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, acquire.NewSchemaMismatch(t, "body is not valid json", nil)
	}
	value := gjson.GetBytes(body, "data."+path)
	if value.Exists() && value.Type != gjson.Null {
		return value, nil
	}
	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return gjson.Result{}, acquire.NewSchemaMismatch(t, "graphql error: "+msg.String(), nil)
	}
	return gjson.Result{}, acquire.NewSchemaMismatch(t, "missing data."+path, nil)
}
