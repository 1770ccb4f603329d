package web

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemLifecycle(t *testing.T) {
	db := requireDB(t)
	h := newTestServer(t, testConfig(), db).Router()

	rec := do(t, h, http.MethodPost, "/api/items", `{"sku":"A1","name":"Widget","qty":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"sku":"A1","name":"Widget","qty":5,"note":null}`, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/api/items/1", `{"qty":7,"note":"fragile"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"sku":"A1","name":"Widget","qty":7,"note":"fragile"}`, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/api/items/1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"There are no info in the input data"}`, rec.Body.String())

	rec = uploadCSV(t, h, "/api/items/csv?mode=merge", "sku,name,qty,note\nA1,Widget v2,9,\nB2,Gadget,3,new\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"total_count":2,"inserted_count":1,"updated_count":1}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/items/B2?by=sku", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gadget", decodeBody(t, rec)["name"])

	rec = do(t, h, http.MethodGet, "/api/items?name=Widget%20v2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"sku":"A1","name":"Widget v2","qty":9,"note":null}]`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/items/1", `{"sku":"A1","name":"Replaced","qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Replaced", decodeBody(t, rec)["name"])

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/items/1", "").Code)

	rec = do(t, h, http.MethodGet, "/api/items/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"The item not found"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/items/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/api/items/1", `{"qty":1}`).Code)
}

func TestItemIntegrityFaults(t *testing.T) {
	db := requireDB(t)
	h := newTestServer(t, testConfig(), db).Router()

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/items", `{"sku":"A1","name":"Widget","qty":1}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/items", `{"sku":"B2","name":"Gadget","qty":1}`).Code)

	rec := do(t, h, http.MethodPost, "/api/items", `{"sku":"A1","name":"Again","qty":2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail, _ := decodeBody(t, rec)["detail"].(string)
	assert.Contains(t, detail, "Got an error on add: duplicate key value violates unique constraint")

	rec = do(t, h, http.MethodPatch, "/api/items/2", `{"sku":"A1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadCSV(t, h, "/api/items/csv?mode=insert", "sku,name,qty\nA1,Dup,1\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/items", "")
	assert.JSONEq(t, `[
		{"id":1,"sku":"A1","name":"Widget","qty":1,"note":null},
		{"id":2,"sku":"B2","name":"Gadget","qty":1,"note":null}
	]`, rec.Body.String(), "failed writes were rolled back")
}

func TestListPaging(t *testing.T) {
	db := requireDB(t)
	h := newTestServer(t, testConfig(), db).Router()

	for i := 1; i <= 5; i++ {
		body := fmt.Sprintf(`{"sku":"S%d","name":"n","qty":%d}`, i, i)
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/items", body).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/items?offset=1&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":2,"sku":"S2","name":"n","qty":2,"note":null},
		{"id":3,"sku":"S3","name":"n","qty":3,"note":null}
	]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/items?qty=4", "")
	assert.JSONEq(t, `[{"id":4,"sku":"S4","name":"n","qty":4,"note":null}]`, rec.Body.String())
}

func TestStockLevelCompositeMerge(t *testing.T) {
	db := requireDB(t)
	h := newTestServer(t, testConfig(), db).Router()

	csv := "warehouse,sku,qty\nnorth,A1,5\nsouth,A1,\nnorth,A1,8\n"
	rec := uploadCSV(t, h, "/api/stock_levels/csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"total_count":3,"inserted_count":2,"updated_count":0}`, rec.Body.String())

	rec = uploadCSV(t, h, "/api/stock_levels/csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"total_count":3,"inserted_count":0,"updated_count":2}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/stock_levels?warehouse=south", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, jsonDecode(rec, &rows))
	require.Len(t, rows, 1)
	assert.EqualValues(t, 0, rows[0]["qty"], "empty cell takes the column default")
	assert.NotEmpty(t, rows[0]["counted_at"])
}

func TestCustomerImportPreparer(t *testing.T) {
	db := requireDB(t)
	h := newTestServer(t, testConfig(), db).Router()

	rec := uploadCSV(t, h, "/api/customers/csv", "email,name,state,balance,active\nAda@Example.com,Ada,texas,\"$1,250.50\",yes\nbob@example.com,Bob,,,\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"total_count":2,"inserted_count":2,"updated_count":0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/customers/ada@example.com?by=email", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ada := decodeBody(t, rec)
	assert.Equal(t, "TX", ada["state"])
	assert.Equal(t, 1250.5, ada["balance"])
	assert.Equal(t, true, ada["active"])
	id, _ := ada["id"].(string)
	assert.Len(t, id, 36)

	rec = do(t, h, http.MethodGet, "/api/customers/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/customers/bob@example.com?by=email", "")
	bob := decodeBody(t, rec)
	assert.Nil(t, bob["state"])
	assert.Equal(t, 0.0, bob["balance"])
}
