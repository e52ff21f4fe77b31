/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package gce

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

const (
	testProject = "test-project"
	testZone    = "us-central1-a"
	testRegion  = "us-central1"
)

// mockGCE is a small in-memory emulation of the compute, storage and resource manager apis
// Every mutation is applied right away and returns RUNNING operation which is DONE on the first fetch
type mockGCE struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	resources map[string]map[string]map[string]any // "<scope>/<collection>" -> name -> object
	ops       map[string]map[string]any            // "<scope>/operations/<name>" -> final operation
	objects   map[string]bool                      // "<bucket>/<object>" in storage
	counter   int
	calls     []string
	tokens    int

	// failOp returns the error message the mutation operation ends with, empty - success
	failOp func(method, path, name string) string
	// failCall returns http status to reject the request with, 0 - pass
	failCall func(method, path string) int
	// requireToken makes the compute api check the bearer token issued by /token
	requireToken bool
}

func newMockGCE(t *testing.T) *mockGCE {
	t.Helper()
	m := &mockGCE{
		t:         t,
		resources: make(map[string]map[string]map[string]any),
		ops:       make(map[string]map[string]any),
		objects:   make(map[string]bool),
	}
	m.srv = httptest.NewServer(m)
	t.Cleanup(m.srv.Close)
	return m
}

// newTestDriver prepares the driver pointed to the mock with fast polling
func newTestDriver(t *testing.T, m *mockGCE) *Driver {
	t.Helper()
	d := &Driver{name: "gce-test", clients: NewClientFactory()}
	if err := d.Prepare(context.Background(), m.config(nil)); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	return d
}

// config generates the driver config json, extra values override the defaults
func (m *mockGCE) config(extra map[string]any) []byte {
	cfg := map[string]any{
		"project_id":          testProject,
		"zone":                testZone,
		"anonymous":           true,
		"compute_endpoint":    m.srv.URL + "/compute/v1/",
		"storage_endpoint":    m.srv.URL + "/storage/v1/",
		"admin_endpoint":      m.srv.URL + "/",
		"poll_interval":       "1ms",
		"image_poll_interval": "1ms",
		"operation_timeout":   "5s",
		"verify_retries":      2,
		"verify_retry_delay":  "1ms",
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		m.t.Fatalf("Unable to marshal config: %v", err)
	}
	return data
}

func (m *mockGCE) link(parts ...string) string {
	return m.srv.URL + "/compute/v1/projects/" + testProject + "/" + strings.Join(parts, "/")
}

// seed puts the object to the collection as is, the api struct could be used
func (m *mockGCE) seed(scope, coll string, v any) map[string]any {
	m.t.Helper()
	obj := toObject(m.t, v)
	m.mu.Lock()
	defer m.mu.Unlock()
	name, _ := obj["name"].(string)
	m.prepare(scope, coll, name, obj)
	m.store(scope+"/"+coll, name, obj)
	m.syncUsers()
	return obj
}

// lookup returns the copy of the stored object or nil
func (m *mockGCE) lookup(scope, coll, name string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.resources[scope+"/"+coll][name]
	if !ok {
		return nil
	}
	return toObject(m.t, obj)
}

// decode the stored object into the api struct
func (m *mockGCE) decode(scope, coll, name string, out any) bool {
	m.t.Helper()
	obj := m.lookup(scope, coll, name)
	if obj == nil {
		return false
	}
	data, _ := json.Marshal(obj)
	if err := json.Unmarshal(data, out); err != nil {
		m.t.Fatalf("Unable to decode %s/%s/%s: %v", scope, coll, name, err)
	}
	return true
}

func (m *mockGCE) countCalls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func toObject(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Unable to marshal object: %v", err)
	}
	out := make(map[string]any)
	if err = json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unable to unmarshal object: %v", err)
	}
	return out
}

func (m *mockGCE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)

	switch {
	case r.URL.Path == "/token":
		m.serveToken(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/projects/"):
		m.serveAdmin(w, r)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/b/"):
		m.serveStorage(w, r)
	case strings.HasPrefix(r.URL.Path, "/compute/v1/projects/"):
		if m.requireToken && r.Header.Get("Authorization") != "Bearer test-token" {
			writeError(w, http.StatusUnauthorized, "authError", "Request had invalid authentication credentials")
			return
		}
		m.serveCompute(w, r)
	default:
		writeError(w, http.StatusNotFound, "notFound", "Unknown path "+r.URL.Path)
	}
}

func (m *mockGCE) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != jwtBearerGrantType || r.PostForm.Get("assertion") == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	m.tokens++
	writeJSON(w, map[string]any{"access_token": "test-token", "token_type": "Bearer", "expires_in": 3600})
}

func (m *mockGCE) serveAdmin(w http.ResponseWriter, r *http.Request) {
	project := strings.TrimPrefix(r.URL.Path, "/v1/projects/")
	if m.failCall != nil {
		if code := m.failCall(r.Method, "admin/"+project); code != 0 {
			writeError(w, code, "failed", "Injected failure")
			return
		}
	}
	if project != testProject {
		writeError(w, http.StatusForbidden, "forbidden", "The caller does not have permission")
		return
	}
	writeJSON(w, map[string]any{"projectId": project, "name": project, "lifecycleState": "ACTIVE"})
}

func (m *mockGCE) serveStorage(w http.ResponseWriter, r *http.Request) {
	bucket, object, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/storage/v1/b/"), "/o/")
	if !m.objects[bucket+"/"+object] {
		writeError(w, http.StatusNotFound, "notFound", "No such object: "+bucket+"/"+object)
		return
	}
	writeJSON(w, map[string]any{"bucket": bucket, "name": object, "size": "1024", "contentType": "application/x-tar"})
}

func (m *mockGCE) serveCompute(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/compute/v1/projects/"), "/")
	if parts[0] != testProject {
		writeError(w, http.StatusForbidden, "forbidden", "No access to project "+parts[0])
		return
	}
	parts = parts[1:]
	if m.failCall != nil {
		if code := m.failCall(r.Method, strings.Join(parts, "/")); code != 0 {
			writeError(w, code, "failed", "Injected failure")
			return
		}
	}

	var scope string
	switch {
	case len(parts) == 2 && parts[0] == "aggregated":
		m.serveAggregated(w, parts[1])
		return
	case len(parts) >= 2 && parts[0] == "global":
		scope, parts = "global", parts[1:]
	case len(parts) >= 3 && (parts[0] == "zones" || parts[0] == "regions"):
		scope, parts = parts[0]+"/"+parts[1], parts[2:]
	default:
		writeError(w, http.StatusNotFound, "notFound", "Unknown path "+r.URL.Path)
		return
	}
	coll := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		m.serveList(w, scope, coll)
	case len(parts) == 1 && r.Method == http.MethodPost:
		m.serveInsert(w, r, scope, coll)
	case len(parts) == 2 && coll == "operations":
		op, ok := m.ops[scope+"/operations/"+parts[1]]
		if !ok {
			writeError(w, http.StatusNotFound, "notFound", "Operation "+parts[1]+" is not found")
			return
		}
		writeJSON(w, op)
	case len(parts) == 2:
		m.serveItem(w, r, scope, coll, parts[1])
	case len(parts) == 3:
		m.serveAction(w, r, scope, coll, parts[1], parts[2])
	default:
		writeError(w, http.StatusNotFound, "notFound", "Unknown path "+r.URL.Path)
	}
}

func (m *mockGCE) serveList(w http.ResponseWriter, scope, coll string) {
	writeJSON(w, map[string]any{"items": m.sorted(scope + "/" + coll)})
}

func (m *mockGCE) serveAggregated(w http.ResponseWriter, coll string) {
	items := make(map[string]any)
	for key := range m.resources {
		scope, c, ok := splitCollection(key)
		if !ok || c != coll || scope == "global" {
			continue
		}
		items[scope] = map[string]any{coll: m.sorted(key)}
	}
	writeJSON(w, map[string]any{"items": items})
}

func (m *mockGCE) serveInsert(w http.ResponseWriter, r *http.Request, scope, coll string) {
	obj := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", "Invalid body: "+err.Error())
		return
	}
	name, _ := obj["name"].(string)
	if name == "" {
		writeError(w, http.StatusBadRequest, "required", "Name is required")
		return
	}
	if _, exists := m.resources[scope+"/"+coll][name]; exists {
		writeError(w, http.StatusConflict, "alreadyExists", fmt.Sprintf("The resource '%s' already exists", name))
		return
	}
	if msg := m.opFailure(r, scope+"/"+coll, name); msg != "" {
		writeJSON(w, m.newOp(scope, msg))
		return
	}

	m.prepare(scope, coll, name, obj)
	if coll == "instances" {
		m.createInstanceParts(scope, obj)
	}
	m.store(scope+"/"+coll, name, obj)
	m.syncUsers()
	writeJSON(w, m.newOp(scope, ""))
}

func (m *mockGCE) serveItem(w http.ResponseWriter, r *http.Request, scope, coll, name string) {
	key := scope + "/" + coll
	obj, ok := m.resources[key][name]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", fmt.Sprintf("The resource '%s/%s' was not found", coll, name))
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, obj)
	case http.MethodDelete:
		if msg := m.opFailure(r, key, name); msg != "" {
			writeJSON(w, m.newOp(scope, msg))
			return
		}
		delete(m.resources[key], name)
		if coll == "instances" {
			for _, d := range asList(obj["disks"]) {
				disk := d.(map[string]any)
				if auto, _ := disk["autoDelete"].(bool); auto {
					delete(m.resources[scope+"/disks"], lastComponent(disk["source"].(string)))
				}
			}
		}
		m.syncUsers()
		writeJSON(w, m.newOp(scope, ""))
	case http.MethodPatch:
		patch := make(map[string]any)
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid", "Invalid body: "+err.Error())
			return
		}
		if msg := m.opFailure(r, key, name); msg != "" {
			writeJSON(w, m.newOp(scope, msg))
			return
		}
		for k, v := range patch {
			obj[k] = v
		}
		writeJSON(w, m.newOp(scope, ""))
	default:
		writeError(w, http.StatusMethodNotAllowed, "badMethod", "Method is not allowed")
	}
}

func (m *mockGCE) serveAction(w http.ResponseWriter, r *http.Request, scope, coll, name, action string) {
	key := scope + "/" + coll
	obj, ok := m.resources[key][name]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", fmt.Sprintf("The resource '%s/%s' was not found", coll, name))
		return
	}
	if r.Method == http.MethodGet && action == "serialPort" {
		writeJSON(w, map[string]any{"contents": "Booting " + name + "\nlogin: ", "next": "42"})
		return
	}

	body := make(map[string]any)
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid", "Invalid body: "+err.Error())
			return
		}
	}
	if msg := m.opFailure(r, key+"/"+name+"/"+action, name); msg != "" {
		writeJSON(w, m.newOp(scope, msg))
		return
	}

	query := r.URL.Query()
	switch coll + "." + action {
	case "instances.stop":
		obj["status"] = "TERMINATED"
	case "instances.start", "instances.reset":
		obj["status"] = "RUNNING"
	case "instances.setMachineType":
		obj["machineType"] = body["machineType"]
	case "instances.attachDisk":
		if body["deviceName"] == nil {
			body["deviceName"] = lastComponent(body["source"].(string))
		}
		obj["disks"] = append(asList(obj["disks"]), body)
	case "instances.detachDisk":
		device := query.Get("deviceName")
		disks := asList(obj["disks"])
		kept := disks[:0]
		for _, d := range disks {
			if d.(map[string]any)["deviceName"] != device {
				kept = append(kept, d)
			}
		}
		if len(kept) == len(disks) {
			writeError(w, http.StatusBadRequest, "invalid", "No attached disk with device name "+device)
			return
		}
		obj["disks"] = kept
	case "instances.addAccessConfig":
		nic := findNIC(obj, query.Get("networkInterface"))
		if nic == nil {
			writeError(w, http.StatusBadRequest, "invalid", "No network interface")
			return
		}
		if body["natIP"] == nil {
			body["natIP"] = m.nextIP("34.0.0")
		}
		nic["accessConfigs"] = append(asList(nic["accessConfigs"]), body)
	case "instances.deleteAccessConfig":
		nic := findNIC(obj, query.Get("networkInterface"))
		if nic == nil {
			writeError(w, http.StatusBadRequest, "invalid", "No network interface")
			return
		}
		var kept []any
		for _, ac := range asList(nic["accessConfigs"]) {
			if ac.(map[string]any)["name"] != query.Get("accessConfig") {
				kept = append(kept, ac)
			}
		}
		nic["accessConfigs"] = kept
	case "disks.resize":
		obj["sizeGb"] = body["sizeGb"]
	case "disks.createSnapshot":
		snapName, _ := body["name"].(string)
		body["sourceDisk"] = obj["selfLink"]
		body["diskSizeGb"] = obj["sizeGb"]
		m.prepare("global", "snapshots", snapName, body)
		m.store("global/snapshots", snapName, body)
	case "targetPools.addInstance":
		for _, ref := range asList(body["instances"]) {
			obj["instances"] = append(asList(obj["instances"]), ref.(map[string]any)["instance"])
		}
	case "targetPools.removeInstance":
		remove := make(map[string]bool)
		for _, ref := range asList(body["instances"]) {
			remove[zonalIDFromURL(ref.(map[string]any)["instance"].(string))] = true
		}
		var kept []any
		for _, link := range asList(obj["instances"]) {
			if !remove[zonalIDFromURL(link.(string))] {
				kept = append(kept, link)
			}
		}
		obj["instances"] = kept
	default:
		writeError(w, http.StatusNotFound, "notFound", "Unknown action "+coll+"."+action)
		return
	}
	m.syncUsers()
	writeJSON(w, m.newOp(scope, ""))
}

func (m *mockGCE) opFailure(r *http.Request, path, name string) string {
	if m.failOp == nil {
		return ""
	}
	return m.failOp(r.Method, path, name)
}

// prepare fills the fields the api sets on creation
func (m *mockGCE) prepare(scope, coll, name string, obj map[string]any) {
	obj["selfLink"] = m.link(scope, coll, name)
	if obj["creationTimestamp"] == nil {
		obj["creationTimestamp"] = "2025-01-01T00:00:00.000-07:00"
	}
	switch {
	case strings.HasPrefix(scope, "zones/"):
		obj["zone"] = m.link(scope)
	case strings.HasPrefix(scope, "regions/"):
		obj["region"] = m.link(scope)
	}
	setDefault := func(field string, value any) {
		if obj[field] == nil {
			obj[field] = value
		}
	}
	switch coll {
	case "instances":
		setDefault("status", "RUNNING")
	case "disks":
		setDefault("status", "READY")
		setDefault("sizeGb", "10")
	case "snapshots", "images":
		setDefault("status", "READY")
	case "addresses":
		if obj["addressType"] == addressTypeInternal {
			setDefault("address", m.nextIP("10.0.0"))
		} else {
			setDefault("address", m.nextIP("35.1.0"))
		}
		setDefault("status", "RESERVED")
	case "subnetworks":
		setDefault("gatewayAddress", "10.10.0.1")
	case "forwardingRules":
		ip, _ := obj["IPAddress"].(string)
		if strings.Contains(ip, "/") {
			if addr, ok := m.resources[regionScope(ip)+"/addresses"][lastComponent(ip)]; ok {
				obj["IPAddress"] = addr["address"]
			}
		}
		setDefault("IPAddress", m.nextIP("35.2.0"))
	}
}

// createInstanceParts creates the boot disk and assigns the addresses to interfaces
func (m *mockGCE) createInstanceParts(scope string, obj map[string]any) {
	name := obj["name"].(string)
	for i, d := range asList(obj["disks"]) {
		attached := d.(map[string]any)
		if params, ok := attached["initializeParams"].(map[string]any); ok {
			disk := map[string]any{
				"name":        name,
				"sourceImage": params["sourceImage"],
				"labels":      params["labels"],
			}
			if params["diskSizeGb"] != nil {
				disk["sizeGb"] = params["diskSizeGb"]
			}
			if params["diskType"] != nil {
				disk["type"] = params["diskType"]
			}
			m.prepare(scope, "disks", name, disk)
			m.store(scope+"/disks", name, disk)
			attached["source"] = disk["selfLink"]
			delete(attached, "initializeParams")
		}
		if attached["deviceName"] == nil {
			attached["deviceName"] = fmt.Sprintf("persistent-disk-%d", i)
		}
	}
	for i, n := range asList(obj["networkInterfaces"]) {
		nic := n.(map[string]any)
		nic["name"] = fmt.Sprintf("nic%d", i)
		nic["networkIP"] = m.nextIP("10.128.0")
		for _, ac := range asList(nic["accessConfigs"]) {
			config := ac.(map[string]any)
			if config["natIP"] == nil {
				config["natIP"] = m.nextIP("34.0.0")
			}
		}
	}
}

// syncUsers recalculates the disk and address users from the instances
func (m *mockGCE) syncUsers() {
	diskUsers := make(map[string][]any)
	ipUsers := make(map[string][]any)
	for key, items := range m.resources {
		if _, coll, ok := splitCollection(key); !ok || coll != "instances" {
			continue
		}
		for _, inst := range items {
			link := inst["selfLink"]
			for _, d := range asList(inst["disks"]) {
				if source, ok := d.(map[string]any)["source"].(string); ok {
					diskUsers[zonalIDFromURL(source)] = append(diskUsers[zonalIDFromURL(source)], link)
				}
			}
			for _, n := range asList(inst["networkInterfaces"]) {
				for _, ac := range asList(n.(map[string]any)["accessConfigs"]) {
					if ip, ok := ac.(map[string]any)["natIP"].(string); ok {
						ipUsers[ip] = append(ipUsers[ip], link)
					}
				}
			}
		}
	}
	for key, items := range m.resources {
		scope, coll, ok := splitCollection(key)
		if !ok {
			continue
		}
		for name, obj := range items {
			switch coll {
			case "disks":
				obj["users"] = diskUsers[lastComponent(scope)+"/"+name]
			case "addresses":
				if obj["addressType"] == addressTypeInternal {
					continue
				}
				users := ipUsers[obj["address"].(string)]
				obj["users"] = users
				obj["status"] = "RESERVED"
				if len(users) > 0 {
					obj["status"] = "IN_USE"
				}
			}
		}
	}
}

func (m *mockGCE) store(key, name string, obj map[string]any) {
	if m.resources[key] == nil {
		m.resources[key] = make(map[string]map[string]any)
	}
	m.resources[key][name] = obj
}

func (m *mockGCE) sorted(key string) []any {
	names := make([]string, 0, len(m.resources[key]))
	for name := range m.resources[key] {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, m.resources[key][name])
	}
	return out
}

func (m *mockGCE) newOp(scope, errMsg string) map[string]any {
	m.counter++
	name := fmt.Sprintf("operation-%d", m.counter)
	running := map[string]any{"name": name, "status": "RUNNING"}
	done := map[string]any{"name": name, "status": OperationDone}
	if errMsg != "" {
		done["error"] = map[string]any{"errors": []any{map[string]any{"code": "RESOURCE_OPERATION_FAILED", "message": errMsg}}}
	}
	switch {
	case strings.HasPrefix(scope, "zones/"):
		running["zone"], done["zone"] = m.link(scope), m.link(scope)
	case strings.HasPrefix(scope, "regions/"):
		running["region"], done["region"] = m.link(scope), m.link(scope)
	}
	m.ops[scope+"/operations/"+name] = done
	return running
}

func (m *mockGCE) nextIP(prefix string) string {
	m.counter++
	return fmt.Sprintf("%s.%d", prefix, m.counter%250+2)
}

// splitCollection splits "zones/z/disks" or "global/networks" key
func splitCollection(key string) (scope, coll string, ok bool) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// regionScope returns "regions/<r>" of the regional resource link
func regionScope(link string) string {
	region, _, _ := strings.Cut(regionalIDFromURL(link), "/")
	return "regions/" + region
}

func findNIC(inst map[string]any, name string) map[string]any {
	for _, n := range asList(inst["networkInterfaces"]) {
		if nic := n.(map[string]any); nic["name"] == name {
			return nic
		}
	}
	return nil
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError responds in the google api error format
func writeError(w http.ResponseWriter, code int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"errors":  []any{map[string]any{"reason": reason, "message": msg}},
		},
	})
}

// testPrivateKey generates the service account key in PEM
func testPrivateKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Unable to generate rsa key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}
