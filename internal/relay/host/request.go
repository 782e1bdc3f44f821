package host

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/relay/internal/shared/types"
)

// request implements request(url, method, headers, body)
func (a *API) request(ctx context.Context, args []interface{}) (interface{}, error) {
	req, err := requestFromArgs(args)
	if err != nil {
		return nil, err
	}

	resp, err := a.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"statusCode":  resp.StatusCode,
		"contentType": resp.ContentType,
		"headers":     resp.Headers,
		"body":        resp.Body,
	}, nil
}

// requestFromArgs builds a HostRequest from exported guest arguments
func requestFromArgs(args []interface{}) (types.HostRequest, error) {
	arg := func(i int) interface{} {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	rawURL, ok := arg(0).(string)
	if !ok || rawURL == "" {
		return types.HostRequest{}, &ArgumentError{Function: "request", Message: "url must be a non-empty string"}
	}

	method := types.MethodGet
	switch m := arg(1).(type) {
	case nil:
	case string:
		parsed, err := types.ParseMethod(m)
		if err != nil {
			return types.HostRequest{}, &ArgumentError{Function: "request", Message: err.Error()}
		}
		method = parsed
	default:
		return types.HostRequest{}, &ArgumentError{Function: "request", Message: "method must be a string"}
	}

	headers, err := headersFromArg(arg(2))
	if err != nil {
		return types.HostRequest{}, err
	}

	var body *string
	switch b := arg(3).(type) {
	case nil:
	case string:
		body = &b
	default:
		encoded, err := sonic.MarshalString(b)
		if err != nil {
			return types.HostRequest{}, &ArgumentError{Function: "request", Message: "body is not serializable: " + err.Error()}
		}
		body = &encoded
	}

	req, err := types.NewHostRequest(rawURL, method, headers, body)
	if err != nil {
		return types.HostRequest{}, &ArgumentError{Function: "request", Message: err.Error()}
	}
	return req, nil
}

func headersFromArg(raw interface{}) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ArgumentError{Function: "request", Message: "headers must be an object"}
	}

	headers := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
		case string:
			headers[k] = val
		case int64, float64, bool:
			headers[k] = fmt.Sprint(val)
		default:
			return nil, &ArgumentError{Function: "request", Message: fmt.Sprintf("header %q must be a string", k)}
		}
	}
	return headers, nil
}
